/*
Package ports defines the driven ports (interfaces) of the Tabula engine.

These interfaces decouple the interpreter from its collaborators, allowing the
engine to work with any decision-maker, source format or storage backend.

# Key Interfaces

  - Consultant: The decision-maker. Given the transcript it returns narration and at most one call.
  - SourceLoader: Materializes the initial table from a source file (e.g. CSV).
  - SessionStore: Persists and loads session snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
