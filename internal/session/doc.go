// Package session runs scripts against one long-lived script host process.
//
// A Session owns a host started through a Transport. Run calls are
// serialized: each sends one request frame and reads frames until the
// matching status frame arrives. A Session that loses its host process or
// pipes becomes permanently dead and answers every later Run with the same
// transport failure Result; replacing it is the registry's job.
package session
