package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Runemoro/knit/internal/errors"
)

// decode converts tool arguments into a request struct. Arguments of the
// wrong JSON type become INVALID_REQUEST errors naming the tool.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("%s: unreadable arguments: %v", req.Params.Name, err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("%s: invalid arguments: %v", req.Params.Name, err))
	}
	return result, nil
}
