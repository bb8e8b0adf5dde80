// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the lifecycle of the hosted kickstart
// module, decoupled from any specific entrypoint like a CLI.
package app
