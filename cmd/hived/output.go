package main

import (
	"encoding/json"
	"fmt"

	"hivecoordinator/internal/rpc"
)

// failNotFound builds a local {ok:false} result for lookups the CLI
// performs itself, before reaching into rpc.Node.
func failNotFound(msg string) rpc.Result {
	return rpc.Result{OK: false, Error: msg}
}

// printResult renders the uniform {ok, error?, details?} RPC envelope
// as indented JSON to stdout.
func printResult(r rpc.Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	if !r.OK {
		return fmt.Errorf("%s", r.Error)
	}
	return nil
}
