// Package core contains the shared leaf types of agentbridge: conversation
// message records, rich model content parts, and the Agent / Tool collaborator
// interfaces consumed by the synchronous bridge.
package core
