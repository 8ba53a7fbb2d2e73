package store

import "driftlock/engine/engineerr"

func errResourceExhausted(op, msg string) *engineerr.Error {
	return engineerr.New(engineerr.ResourceExhausted, op, msg)
}

func errProgrammer(op, msg string) *engineerr.Error {
	return engineerr.New(engineerr.ProgrammerError, op, msg)
}

func errDeterminism(op, msg string) *engineerr.Error {
	return engineerr.New(engineerr.DeterminismViolation, op, msg)
}

func errProtocol(op, msg string) *engineerr.Error {
	return engineerr.New(engineerr.ProtocolError, op, msg)
}
