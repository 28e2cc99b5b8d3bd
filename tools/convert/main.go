package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sealdice/cqsocket/tools/convert/converter"
)

func main() {
	inputPath := pflag.StringP("input", "i", "", "path to the message file; omit to read from stdin")
	outputPath := pflag.StringP("output", "o", "", "path to write the converted message; omit to write to stdout")
	fromFlag := pflag.String("from", "", "input format: cq, json or yaml (default detects from input)")
	formatFlag := pflag.StringP("format", "f", "", "output format: cq, json, yaml or text (default detects from output path)")
	pflag.Parse()

	data, err := readInput(*inputPath)
	if err != nil {
		exitWithError(err)
	}

	if len(data) == 0 {
		exitWithError(errors.New("no input provided; specify --input or pipe data"))
	}

	inputFormat := *fromFlag
	if inputFormat == "" {
		inputFormat = detectInputFormat(*inputPath, data)
	}

	msg, err := converter.ParseMessage(data, inputFormat)
	if err != nil {
		exitWithError(err)
	}

	outputFormat, err := pickOutputFormat(*formatFlag, *outputPath, inputFormat)
	if err != nil {
		exitWithError(err)
	}

	outputBytes, err := converter.MarshalOutput(msg, outputFormat)
	if err != nil {
		exitWithError(err)
	}

	if err := writeOutput(outputBytes, *outputPath); err != nil {
		exitWithError(err)
	}
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

func detectInputFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return converter.FormatJSON
	case ".yaml", ".yml":
		return converter.FormatYAML
	case ".txt", ".cq":
		return converter.FormatCQ
	}

	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "[CQ:"):
		return converter.FormatCQ
	case strings.HasPrefix(trimmed, "["), strings.HasPrefix(trimmed, `"`):
		return converter.FormatJSON
	case strings.HasPrefix(trimmed, "- type:"):
		return converter.FormatYAML
	}
	return converter.FormatCQ
}

// pickOutputFormat defaults to JSON for CQ input and to CQ otherwise.
func pickOutputFormat(flagValue, outputPath, inputFormat string) (string, error) {
	switch f := strings.ToLower(flagValue); f {
	case converter.FormatCQ, converter.FormatJSON, converter.FormatText:
		return f, nil
	case converter.FormatYAML, "yml":
		return converter.FormatYAML, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported output format: %s", flagValue)
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".json":
		return converter.FormatJSON, nil
	case ".yaml", ".yml":
		return converter.FormatYAML, nil
	case ".txt", ".cq":
		return converter.FormatCQ, nil
	}
	if inputFormat == converter.FormatCQ {
		return converter.FormatJSON, nil
	}
	return converter.FormatCQ, nil
}

func writeOutput(data []byte, path string) error {
	if path == "" {
		if len(data) == 0 {
			return nil
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
		if data[len(data)-1] != '\n' {
			_, err := os.Stdout.Write([]byte("\n"))
			return err
		}
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return err
		}
	}

	return os.WriteFile(path, data, 0o644)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
