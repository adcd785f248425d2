// Package internal holds private helpers shared by the engine and its
// sub-packages: refresh-token encoding and session identifiers.
//
// Sub-packages:
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: the login, refresh, logout and validate orchestrators
//   - rate: Redis-backed throttling for login and registration
//   - logging: logrus construction and the gin request logger
//   - settings: viper-backed process settings
//   - httpapi: the gin REST surface
package internal
