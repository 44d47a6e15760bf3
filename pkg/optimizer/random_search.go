package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/raykavin/patternrun/pkg/logger"
)

// RandomSearch samples parameter sets uniformly and evaluates them in parallel
type RandomSearch struct {
	config Config
	logger logger.Logger
	rng    *rand.Rand
}

// NewRandomSearch creates a new random search optimizer
func NewRandomSearch(config *Config) (*RandomSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(config.Parameters) == 0 {
		return nil, ErrNoParameters
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &RandomSearch{
		config: *config,
		logger: logger.OrNop(config.Logger),
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Optimize evaluates MaxIterations random parameter sets and returns the TopN
// best by the target metric. The first evaluation error aborts the search.
func (r *RandomSearch) Optimize(ctx context.Context, evaluator Evaluator) ([]*Result, error) {
	if evaluator == nil {
		return nil, ErrNilEvaluator
	}

	parameterSets := r.generateRandomParameterSets()
	r.logger.Infof("Starting random search with %d iterations", len(parameterSets))

	results, err := r.runEvaluations(ctx, evaluator, parameterSets)
	if err != nil {
		return nil, err
	}

	sortResults(results, r.config.TargetMetric, r.config.Maximize)
	if r.config.TopN > 0 && r.config.TopN < len(results) {
		results = results[:r.config.TopN]
	}

	r.logger.Infof("Random search completed with %d results", len(results))
	return results, nil
}

// generateRandomParameterSets creates random parameter sets for evaluation
func (r *RandomSearch) generateRandomParameterSets() []ParameterSet {
	parameterSets := make([]ParameterSet, r.config.MaxIterations)
	for i := range parameterSets {
		paramSet := make(ParameterSet, len(r.config.Parameters))
		for _, param := range r.config.Parameters {
			paramSet[param.Name] = r.generateRandomValue(param)
		}
		parameterSets[i] = paramSet
	}
	return parameterSets
}

func (r *RandomSearch) generateRandomValue(param Parameter) float64 {
	low, high := param.Min, param.Max
	if low >= high {
		return low
	}

	if param.Type == TypeInt {
		low, high = math.Ceil(low), math.Floor(high)
		return low + float64(r.rng.Intn(int(high-low)+1))
	}
	return low + r.rng.Float64()*(high-low)
}

// runEvaluations executes the evaluations keeping the sampling order
func (r *RandomSearch) runEvaluations(
	ctx context.Context,
	evaluator Evaluator,
	parameterSets []ParameterSet,
) ([]*Result, error) {
	var (
		results   = make([]*Result, len(parameterSets))
		wg        sync.WaitGroup
		errCh     = make(chan error, 1)
		semaphore = make(chan struct{}, max(r.config.Parallelism, 1))
	)

	for i, params := range parameterSets {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case err := <-errCh:
			wg.Wait()
			return nil, err
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(index int, paramSet ParameterSet) {
			defer wg.Done()
			defer func() { <-semaphore }()

			r.logger.Debugf("Evaluating parameter set %d/%d", index+1, len(parameterSets))

			result, err := evaluator.Evaluate(ctx, paramSet)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("evaluation error: %w", err):
				default:
				}
				return
			}
			results[index] = result
		}(i, params)
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
		return results, nil
	}
}
