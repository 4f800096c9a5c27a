package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	holoapi "holofit/pkg/holofit"
)

func loadSimulateRequest(path string) (holoapi.SimulateRequest, error) {
	var req holoapi.SimulateRequest
	if err := decodeConfig(path, &req); err != nil {
		return holoapi.SimulateRequest{}, err
	}
	return req, nil
}

func loadFitRequest(path string) (holoapi.FitRequest, error) {
	var req holoapi.FitRequest
	if err := decodeConfig(path, &req); err != nil {
		return holoapi.FitRequest{}, err
	}
	return req, nil
}

func decodeConfig(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

func readValues(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("load data %s: %w", path, err)
	}
	return values, nil
}

func writeValues(path string, values []float64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
