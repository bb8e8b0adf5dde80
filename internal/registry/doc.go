// Package registry maps module names given on the command line to the code
// that builds them.
//
// Every module package exposes a Module value whose Register method adds its
// constructor here. The application registers all compiled-in modules at
// startup and then builds the one it was asked to run.
package registry
