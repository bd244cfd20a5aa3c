package usecase

// ResolveAssignments is exported for testing
var ResolveAssignments = resolveAssignments

type ResolveInput = resolveInput
