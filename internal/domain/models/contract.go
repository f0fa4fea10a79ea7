package models

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// initializerNames are the method names recognised as proxy initializers.
var initializerNames = []string{"initialize", "init", "__init", "initializer"}

// ContractArtifact is a compiled contract loaded from the build directory.
// It is immutable once loaded.
type ContractArtifact struct {
	Name     string
	Path     string
	Bytecode []byte
	ABI      abi.ABI
	RawABI   json.RawMessage
	Metadata json.RawMessage
}

// ConstructorInputs returns the constructor argument schema, empty when the
// contract declares no constructor.
func (a *ContractArtifact) ConstructorInputs() abi.Arguments {
	return a.ABI.Constructor.Inputs
}

// Initializer returns the initializer method declared by the contract. When
// the initializer is overloaded, the first declared overload wins: go-ethereum
// keys it by its bare name and later overloads as name0, name1 and so on.
func (a *ContractArtifact) Initializer() (abi.Method, bool) {
	keys := slices.Sorted(maps.Keys(a.ABI.Methods))
	for _, candidate := range initializerNames {
		for _, key := range keys {
			if method := a.ABI.Methods[key]; strings.EqualFold(method.RawName, candidate) {
				return method, true
			}
		}
	}
	return abi.Method{}, false
}

// BytecodeObject represents bytecode information in a Foundry artifact
type BytecodeObject struct {
	Object         string         `json:"object"`
	SourceMap      string         `json:"sourceMap,omitempty"`
	LinkReferences map[string]any `json:"linkReferences,omitempty"`
}

// Artifact is the on-disk artifact as written by truffle, etherlime or
// Foundry. Bytecode is either a hex string or a Foundry bytecode object.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Metadata     json.RawMessage `json:"metadata"`
	RawMetadata  string          `json:"rawMetadata"`
}

// ArtifactMetadata represents the parts of solc metadata used to name a contract
type ArtifactMetadata struct {
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}
