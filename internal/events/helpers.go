package events

import (
	"encoding/json"
	"fmt"
)

// SetProgressData sets the Data field with ProgressData in a type-safe way.
func (e *Event) SetProgressData(data ProgressData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ProgressData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetProgressData retrieves ProgressData from the Data field.
func (e *Event) GetProgressData() (*ProgressData, error) {
	var data ProgressData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ProgressData: %w", err)
	}
	return &data, nil
}

// SetQueryCompletedData sets the Data field with QueryCompletedData in a type-safe way.
func (e *Event) SetQueryCompletedData(data QueryCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert QueryCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetQueryCompletedData retrieves QueryCompletedData from the Data field.
func (e *Event) GetQueryCompletedData() (*QueryCompletedData, error) {
	var data QueryCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse QueryCompletedData: %w", err)
	}
	return &data, nil
}

// SetPrefixFailedData sets the Data field with PrefixFailedData in a type-safe way.
func (e *Event) SetPrefixFailedData(data PrefixFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PrefixFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPrefixFailedData retrieves PrefixFailedData from the Data field.
func (e *Event) GetPrefixFailedData() (*PrefixFailedData, error) {
	var data PrefixFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PrefixFailedData: %w", err)
	}
	return &data, nil
}

// SetRateLimitedData sets the Data field with RateLimitedData in a type-safe way.
func (e *Event) SetRateLimitedData(data RateLimitedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RateLimitedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRateLimitedData retrieves RateLimitedData from the Data field.
func (e *Event) GetRateLimitedData() (*RateLimitedData, error) {
	var data RateLimitedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RateLimitedData: %w", err)
	}
	return &data, nil
}

// SetRetryData sets the Data field with RetryData in a type-safe way.
func (e *Event) SetRetryData(data RetryData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RetryData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRetryData retrieves RetryData from the Data field.
func (e *Event) GetRetryData() (*RetryData, error) {
	var data RetryData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RetryData: %w", err)
	}
	return &data, nil
}

// SetCircuitBreakerData sets the Data field with CircuitBreakerData in a type-safe way.
func (e *Event) SetCircuitBreakerData(data CircuitBreakerData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert CircuitBreakerData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetCircuitBreakerData retrieves CircuitBreakerData from the Data field.
func (e *Event) GetCircuitBreakerData() (*CircuitBreakerData, error) {
	var data CircuitBreakerData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CircuitBreakerData: %w", err)
	}
	return &data, nil
}

// SetPersistData sets the Data field with PersistData in a type-safe way.
func (e *Event) SetPersistData(data PersistData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PersistData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPersistData retrieves PersistData from the Data field.
func (e *Event) GetPersistData() (*PersistData, error) {
	var data PersistData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PersistData: %w", err)
	}
	return &data, nil
}

// SetRunCompletedData sets the Data field with RunCompletedData in a type-safe way.
func (e *Event) SetRunCompletedData(data RunCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RunCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRunCompletedData retrieves RunCompletedData from the Data field.
func (e *Event) GetRunCompletedData() (*RunCompletedData, error) {
	var data RunCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RunCompletedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
