// Package flow implements a generic asynchronous pipeline engine.
//
// A Blueprint is an immutable, typed description of a chain of stages
// (transform/then/via/await/when_all/when_any/end). A Runner binds a
// Blueprint to a Receiver and, for the cancellable variant, a Controller,
// and drives the stages to completion. See SPEC_FULL.md at the module root
// for the full design.
package flow
