package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/redpanda-data/benthos/v4/public/service"

	"github.com/johnranson/formatbreaker/pkg/fbreak"
	"github.com/johnranson/formatbreaker/pkg/layout"
)

// FormatBreakerProcessor is a Benthos processor that parses binary message
// payloads into structured data using a declarative layout schema.
type FormatBreakerProcessor struct {
	config       Config
	schemaMap    sync.Map // Cache for loaded schemas
	logger       *service.Logger
	mParsed      *service.MetricCounter
	mErrors      *service.MetricCounter
	mCacheHits   *service.MetricCounter
	mCacheMisses *service.MetricCounter
}

// Config contains configuration parameters for the formatbreaker processor.
type Config struct {
	SchemaPath string `json:"schema_path" yaml:"schema_path"`
}

func init() {
	// Register the processor with Benthos
	err := service.RegisterProcessor(
		"formatbreaker",
		formatBreakerProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

// formatBreakerProcessorConfig returns a config spec for the processor.
func formatBreakerProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Parses binary data into structured messages using declarative formatbreaker layouts.").
		Description("This processor walks each message's raw bytes with a layout compiled from a YAML schema and replaces the payload with the resulting labeled structure, including spacer entries for skipped ranges.").
		Field(service.NewStringField("schema_path").
			Description("Path to the layout schema YAML file.").
			Example("./schemas/sensor_frame.yaml")).
		Version("0.1.0")
}

// newProcessorFromConfig creates a new FormatBreakerProcessor from a parsed config.
func newProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*FormatBreakerProcessor, error) {
	schemaPath, err := conf.FieldString("schema_path")
	if err != nil {
		return nil, err
	}

	// Check the schema file exists before accepting the config
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found at path: %s", schemaPath)
	}

	metrics := mgr.Metrics()

	return &FormatBreakerProcessor{
		config:       Config{SchemaPath: schemaPath},
		logger:       mgr.Logger(),
		mParsed:      metrics.NewCounter("formatbreaker_parsed_messages"),
		mErrors:      metrics.NewCounter("formatbreaker_processing_errors"),
		mCacheHits:   metrics.NewCounter("formatbreaker_schema_cache_hits"),
		mCacheMisses: metrics.NewCounter("formatbreaker_schema_cache_misses"),
	}, nil
}

// Process parses one message's binary payload with the configured layout.
func (p *FormatBreakerProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	p.logger.Debug("Parsing binary data with formatbreaker layout")

	binData, err := msg.AsBytes()
	if err != nil {
		p.logger.Errorf("Failed to get binary data from message: %v", err)
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("failed to get binary data from message: %w", err))
		return service.MessageBatch{msg}, nil
	}

	if len(binData) == 0 {
		p.logger.Warn("Empty binary data provided")
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("empty binary data provided"))
		return service.MessageBatch{msg}, nil
	}

	schema, err := p.loadSchema(p.config.SchemaPath)
	if err != nil {
		p.logger.Errorf("Failed to load schema: %v", err)
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("failed to load schema: %w", err))
		return service.MessageBatch{msg}, nil
	}

	result, err := schema.Parse(ctx, binData)
	if err != nil {
		p.logger.Errorf("Failed to parse binary data of size %d bytes: %v", len(binData), err)
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("failed to parse binary data of size %d bytes: %w", len(binData), err))
		return service.MessageBatch{msg}, nil
	}

	p.logger.Debugf("Successfully parsed %d bytes of binary data", len(binData))
	p.mParsed.Incr(1)

	// Create new message with parsed data
	newMsg := service.NewMessage(nil)
	newMsg.SetStructured(fbreak.ToMap(result))

	// Copy metadata from original message
	msg.MetaWalk(func(key, value string) error {
		newMsg.MetaSet(key, value)
		return nil
	})

	return service.MessageBatch{newMsg}, nil
}

// loadSchema loads and caches a layout schema file.
func (p *FormatBreakerProcessor) loadSchema(path string) (*layout.Schema, error) {
	if cached, ok := p.schemaMap.Load(path); ok {
		p.logger.Tracef("Schema cache hit for path: %s", path)
		p.mCacheHits.Incr(1)
		return cached.(*layout.Schema), nil
	}

	p.logger.Debugf("Loading schema from path: %s", path)
	p.mCacheMisses.Incr(1)

	schema, err := layout.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := schema.Compile(); err != nil {
		return nil, err
	}

	p.schemaMap.Store(path, schema)
	p.logger.Debugf("Loaded and cached schema from: %s", path)
	return schema, nil
}

// Close releases the processor's resources.
func (p *FormatBreakerProcessor) Close(ctx context.Context) error {
	p.logger.Debug("Closing formatbreaker processor and clearing schema cache")
	p.schemaMap = sync.Map{} // Clear the cache
	return nil
}

func main() {
	service.RunCLI(context.Background())
}
