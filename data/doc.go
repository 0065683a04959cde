// Package data defines the buffer capability contract that numeric-array
// backends must satisfy, together with the built-in dense float64 backend.
//
// The core never assumes a concrete array representation: it only relies on
// Array for shape inspection, same-backend allocation and rectangular region
// copies. Host runtimes can register their own Origin and plug externally
// owned arrays behind the same interface.
package data
