// Package temporal provides the Temporal client, worker, and error wrapping
// used to orchestrate scheduled rule scans.
//
// Workflow and activity implementations live in the workflows and activities
// subpackages. Signal and query names are defined here so the server layer can
// interact with running workflows without importing the workflows package.
package temporal
