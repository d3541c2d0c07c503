// Package security audits the loaded configuration for insecure choices and
// checks TLS certificate validity for each HTTPS source. Cert statuses are
// refreshed every polling cycle and served by the status API.
package security
