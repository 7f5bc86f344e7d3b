// Package app contains the core application logic. It defines the App
// struct, its configuration, and the pipeline that turns entity files into
// a configuration, a problem, and optionally a solution, decoupled from any
// specific entrypoint like a CLI or server.
package app
