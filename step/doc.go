// Package step binds processing scripts to records and drives them.
//
// A Definition declares a script together with its input and output path
// patterns. Bound to a record id and a (task, modality) unit, it becomes a
// Step which can report its Status and Run the script with status logging.
//
// A step is done when all of its outputs exist (non-empty files or
// directories). Otherwise the newest status entry in the record log decides
// between PROCESSING and ERROR, and the inputs decide between DATA_READY and
// INIT.
//
// Registry holds the definitions and step order per modality, and the Model
// each modality uses to discover record ids. Collection is the ordered view
// of definitions for a scope.
package step
