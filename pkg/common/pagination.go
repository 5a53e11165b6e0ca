package common

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageParams represents cursor pagination parameters
type PageParams struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// ExtractPageParams extracts limit and cursor query parameters from request
func ExtractPageParams(r *http.Request) PageParams {
	params := PageParams{Limit: DefaultPageSize}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > MaxPageSize {
				l = MaxPageSize
			}
			params.Limit = l
		}
	}
	params.Cursor = r.URL.Query().Get("cursor")

	return params
}

// cursorValue is the JSON form of one key attribute. Keys only ever hold S or N values.
type cursorValue struct {
	S *string `json:"S,omitempty"`
	N *string `json:"N,omitempty"`
}

// EncodeCursor creates an opaque base64 cursor from a store continuation key
func EncodeCursor(lastEvaluatedKey map[string]types.AttributeValue) (string, error) {
	if len(lastEvaluatedKey) == 0 {
		return "", nil
	}

	data := make(map[string]cursorValue, len(lastEvaluatedKey))
	for name, av := range lastEvaluatedKey {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			data[name] = cursorValue{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			data[name] = cursorValue{N: &n}
		default:
			return "", fmt.Errorf("unsupported key attribute type for %s", name)
		}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// DecodeCursor decodes a base64 cursor back into a store continuation key
func DecodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}

	jsonData, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var data map[string]cursorValue
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid cursor data: %w", err)
	}

	key := make(map[string]types.AttributeValue, len(data))
	for name, v := range data {
		switch {
		case v.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *v.S}
		case v.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *v.N}
		default:
			return nil, fmt.Errorf("invalid cursor attribute %s", name)
		}
	}
	return key, nil
}
