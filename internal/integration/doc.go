// Package integration runs both services against real Postgres and RabbitMQ
// containers. The tests need Docker and the integration build tag:
//
//	go test -tags integration ./internal/integration/...
package integration
