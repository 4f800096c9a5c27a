package storage

import (
	"encoding/json"
	"errors"

	"holofit/internal/record"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeFitRun(run record.FitRun) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeFitRun(data []byte) (record.FitRun, error) {
	var run record.FitRun
	if err := json.Unmarshal(data, &run); err != nil {
		return record.FitRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return record.FitRun{}, err
	}
	return run, nil
}

func EncodeResidualHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeResidualHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v record.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
