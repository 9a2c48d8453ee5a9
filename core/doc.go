// Package core defines the shared types and contracts of the IntentMesh
// orchestrator: the canonical response envelope, the conversation and
// message model, the classifier and conversation store contracts, agent
// capability descriptors and the coded error taxonomy.
//
// Implementations live in sibling packages (registry, classify, directory,
// dispatch, normalize, conversation, endpoint); core itself has no
// dependencies beyond id generation so every package can import it freely.
package core
