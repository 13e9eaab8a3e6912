// Package models holds the GORM persistence models backing the domain
// aggregates. Domain types carry no ORM tags; everything table-shaped
// lives here, and each model knows how to convert to and from its
// aggregate.
//
// One file per aggregate: identity.go (users), column_mapping.go,
// import_job.go and erp_connection.go, all embedding the shared
// BaseModel/AggregateModel from base.go.
package models
