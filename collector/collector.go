package collector

import (
	"UnraidTools/unraid-mqtt-stats/analyzer"
	"UnraidTools/unraid-mqtt-stats/dto"
)

// Factory builds reporters for command sensors from configuration, sharing
// one executor across all of them. It implements
// registry.CommandReporterFactory.
type Factory struct {
	executor Executor
}

func NewFactory(executor Executor) *Factory {
	return &Factory{executor: executor}
}

func (f *Factory) CommandReporter(command string, args []string, postProcess []string) (dto.Reporter, error) {
	chain, err := analyzer.NewChain(postProcess)
	if err != nil {
		return nil, err
	}
	return &CommandReporter{
		executor: f.executor,
		command:  command,
		args:     args,
		chain:    chain,
	}, nil
}
