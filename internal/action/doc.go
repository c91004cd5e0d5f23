// Package action implements the phased-action state machine and the
// composition containers built on top of it.
//
// A phased action is a unit of work against the shared session that may need
// several invocations ("phases") to finish. Each phase is dispatched as one
// prioritized task, so no single action can hold a worker across a long wait.
// An action signals that it has definitively finished by calling NoNextPhase;
// until then the engine keeps resubmitting it. A body that never calls
// NoNextPhase loops forever — that contract is on the body author and is
// exercised by the tests in this package.
package action
