/*
Package domain contains the core models of a tabula session.

It defines the structured commands a decision-maker may issue, the append-only
transcript exchanged with it, and the session state the controller mutates. The
package is kept free of I/O and persistence.

# Key Entities

  - Command: TableOp, SeriesOp, Pop or AssignSeriesToTable.
  - Call: a command in wire form, tied to the ID its result answers.
  - Transcript: ordered messages made of text, image and tool-use blocks.
  - Session: transcript, tabular store, pending call and step log.
*/
package domain
