// Package api defines the contracts shared by the reactor, the relays and
// their transport collaborators: the readiness Poller, the Event record
// sum type, the bus and stream connection interfaces, and the error
// taxonomy.
package api
