// Package store keeps the latest report of every project in memory. Reports
// expire when their project has not reported within the TTL.
package store
