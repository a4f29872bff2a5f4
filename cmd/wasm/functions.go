//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/jalfmt"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/playground"
)

// FormatCode formats the code of one listing method using jalfmt
func FormatCode(code string) (string, error) {
	cfg := jalfmt.Cfg{
		Indent:        2,
		AlignComments: true,
	}

	formatted, err := jalfmt.Format(code, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}

	return formatted, nil
}

// promisify wraps a Go function to return a JavaScript Promise
func promisify(fn func(args []js.Value) (string, error)) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) any {
		// Handler for the Promise
		handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
			resolve := promiseArgs[0]
			reject := promiseArgs[1]

			// Run this code asynchronously
			go func() {
				result, err := fn(args)
				if err != nil {
					errorConstructor := js.Global().Get("Error")
					errorObject := errorConstructor.New(err.Error())
					reject.Invoke(errorObject)
					return
				}

				resolve.Invoke(result)
			}()

			// The handler of a Promise doesn't return any value
			return nil
		})

		// Create and return the Promise object
		promiseConstructor := js.Global().Get("Promise")
		return promiseConstructor.New(handler)
	})
}

func main() {
	// Register InferFrames function
	js.Global().Set("InferFrames", promisify(func(args []js.Value) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("InferFrames: expected 1 arg (listingYAML), got %v", len(args))
		}

		return playground.InferFrames(args[0].String())
	}))

	// Register FormatCode function
	js.Global().Set("FormatCode", promisify(func(args []js.Value) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("FormatCode: expected 1 arg (code), got %v", len(args))
		}

		return FormatCode(args[0].String())
	}))

	// Register InferFramesPipeline function
	js.Global().Set("InferFramesPipeline", promisify(func(args []js.Value) (string, error) {
		if len(args) < 1 || len(args) > 2 {
			return "", fmt.Errorf("InferFramesPipeline: expected 1 or 2 args (listingYAML, strict), got %v", len(args))
		}
		strict := len(args) == 2 && args[1].Bool()

		result, err := playground.InferFramesPipeline(args[0].String(), strict)
		if err != nil {
			return "", err
		}

		// Serialize the result to JSON
		jsonBytes, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("failed to marshal pipeline result: %w", err)
		}

		return string(jsonBytes), nil
	}))

	// Keep the program running
	<-make(chan bool)
}
