package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	quickChartBaseURL = "https://quickchart.io/chart"

	defaultChartWidth  = 500
	defaultChartHeight = 300
)

const quickChartDescription = "Generate data visualizations using Chart.js configurations via " +
	"QuickChart.io. Returns a URL to the chart image that can be shared or embedded. " +
	"The chart_config must include a 'type' field (bar, line, pie, doughnut, scatter, radar, " +
	"polarArea, bubble, ...) and a 'data' object with 'labels' and 'datasets'. Each dataset " +
	"needs 'label' and 'data' fields; 'options' and color fields are optional. " +
	"Get the data first, format it into a Chart.js structure, then call this tool."

// NewQuickChartTool returns the local chart-generation tool. It renders a
// Chart.js configuration into a shareable QuickChart.io image URL without
// calling the model or the MCP server.
//
// Configuration problems are reported as a JSON payload with status "error"
// rather than a Go error, so the model can read the message and retry with a
// corrected configuration.
func NewQuickChartTool() *FunctionTool {
	return NewFunctionTool(
		"generate_chart",
		quickChartDescription,
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chart_config": map[string]any{
					"type":        "object",
					"description": "Chart.js configuration object with 'type' and 'data' fields",
				},
				"width": map[string]any{
					"type":        "integer",
					"description": "Chart width in pixels (default 500)",
				},
				"height": map[string]any{
					"type":        "integer",
					"description": "Chart height in pixels (default 300)",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Optional chart title",
				},
			},
			"required": []string{"chart_config"},
		},
		generateChart,
	)
}

func generateChart(_ context.Context, args map[string]any) (any, error) {
	cfg, ok := args["chart_config"].(map[string]any)
	if !ok {
		return chartConfigError("chart_config must be an object")
	}
	if _, ok := cfg["type"]; !ok {
		return chartConfigError("chart_config must include a 'type' field (e.g. 'bar', 'line', 'pie')")
	}
	if _, ok := cfg["data"]; !ok {
		return chartConfigError("chart_config must include a 'data' field with labels and datasets")
	}

	width := intArg(args, "width", defaultChartWidth)
	height := intArg(args, "height", defaultChartHeight)

	config := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		config[k] = v
	}
	if title, _ := args["title"].(string); title != "" {
		config["options"] = withChartTitle(config["options"], title)
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, &ToolError{
			Tool:    "generate_chart",
			Message: fmt.Sprintf("failed to marshal chart config: %v", err),
			Code:    "EXECUTION_ERROR",
		}
	}

	query := url.Values{}
	query.Set("w", fmt.Sprintf("%d", width))
	query.Set("h", fmt.Sprintf("%d", height))
	query.Set("c", string(data))

	return chartPayload(map[string]any{
		"text":       "Chart created successfully!",
		"chart_url":  quickChartBaseURL + "?" + query.Encode(),
		"status":     "success",
		"width":      width,
		"height":     height,
		"chart_type": cfg["type"],
	})
}

// withChartTitle merges a title into options.plugins.title without clobbering
// a title the model already set.
func withChartTitle(options any, title string) map[string]any {
	opts, _ := options.(map[string]any)
	if opts == nil {
		opts = map[string]any{}
	}
	plugins, _ := opts["plugins"].(map[string]any)
	if plugins == nil {
		plugins = map[string]any{}
	}
	if _, exists := plugins["title"]; !exists {
		plugins["title"] = map[string]any{"display": true, "text": title}
	}
	opts["plugins"] = plugins
	return opts
}

func chartConfigError(msg string) (any, error) {
	return chartPayload(map[string]any{
		"text":       fmt.Sprintf("Chart configuration error: %s", msg),
		"status":     "error",
		"error":      "invalid_config",
		"suggestion": "Check your Chart.js configuration. Ensure it has 'type' and 'data' fields.",
	})
}

func chartPayload(payload map[string]any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ToolError{
			Tool:    "generate_chart",
			Message: fmt.Sprintf("failed to marshal chart payload: %v", err),
			Code:    "EXECUTION_ERROR",
		}
	}
	return string(data), nil
}

// intArg reads an integer argument, accepting the float64 form JSON decoding
// produces.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
