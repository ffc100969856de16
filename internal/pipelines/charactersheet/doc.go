// Package charactersheet builds a character sheet in three checkpointed
// steps: ability scores, skills, and persistence.
package charactersheet
