// Package processor chains DSP workers, checking that each stage's output
// type and rate match the next stage's input.
package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/norasector/turbine-common/types"
)

type Processor struct {
	Name        string
	blocks      []*DSPWorker
	initialized bool
}

func NewProcessor(name string) *Processor {
	return &Processor{Name: name}
}

func (p *Processor) AddBlock(worker *DSPWorker) {
	p.blocks = append(p.blocks, worker)
	p.initialized = false
}

// Blocks returns the stage names in order.
func (p *Processor) Blocks() []string {
	ret := make([]string, len(p.blocks))
	for i, b := range p.blocks {
		ret[i] = b.Name
	}
	return ret
}

func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if len(p.blocks) < 2 {
		return fmt.Errorf("must specify at least 2 blocks")
	}

	for i := 1; i < len(p.blocks); i++ {
		cur, next := p.blocks[i-1], p.blocks[i]
		if cur.outputDataType != next.inputDataType {
			return fmt.Errorf("cur: %s next %s data type mismatch (%s %s)", cur.Name, next.Name, cur.outputDataType, next.inputDataType)
		}
		if cur.OutputRate != next.InputRate {
			return fmt.Errorf("cur: %s next %s rate mismatch (%d %d)", cur.Name, next.Name, cur.OutputRate, next.InputRate)
		}
	}

	p.initialized = true
	return nil
}

// OutputRate is the rate of the last stage.
func (p *Processor) OutputRate() int {
	if len(p.blocks) == 0 {
		return 0
	}
	return p.blocks[len(p.blocks)-1].OutputRate
}

// processData runs the chain. Output buffers are owned by each stage and
// reused across calls; they grow when a larger input arrives.
func (p *Processor) processData(cmplxInput []complex64, floatInput []float32, metrics map[string]interface{}) ([]complex64, []float32, error) {
	if len(cmplxInput) > 0 && len(floatInput) > 0 {
		return nil, nil, errors.New("may only specify one input")
	}

	var cmplxOutput []complex64
	var floatOutput []float32

	for i, block := range p.blocks {
		start := time.Now()

		switch {
		case block.inputDataType == DataTypeComplex && block.outputDataType == DataTypeComplex:
			size := block.ccWorker.PredictOutputSize(len(cmplxInput)) * 2
			if len(block.cOutputBuffer) < size {
				block.cOutputBuffer = make([]complex64, size)
			}
			n := block.ccWorker.WorkBuffer(cmplxInput, block.cOutputBuffer)
			cmplxOutput = block.cOutputBuffer[:n]

		case block.inputDataType == DataTypeComplex && block.outputDataType == DataTypeFloat:
			size := block.cfWorker.PredictOutputSize(len(cmplxInput)) * 2
			if len(block.fOutputBuffer) < size {
				block.fOutputBuffer = make([]float32, size)
			}
			n := block.cfWorker.WorkBuffer(cmplxInput, block.fOutputBuffer)
			floatOutput = block.fOutputBuffer[:n]

		case block.inputDataType == DataTypeFloat && block.outputDataType == DataTypeFloat:
			size := block.ffWorker.PredictOutputSize(len(floatInput)) * 2
			if len(block.fOutputBuffer) < size {
				block.fOutputBuffer = make([]float32, size)
			}
			n := block.ffWorker.WorkBuffer(floatInput, block.fOutputBuffer)
			floatOutput = block.fOutputBuffer[:n]

		default:
			return nil, nil, fmt.Errorf("%s unknown output type %s for input %s", block.Name, block.outputDataType, block.inputDataType)
		}

		if metrics != nil {
			metrics[fmt.Sprintf("%s_duration", block.Name)] = time.Since(start).Microseconds()
		}

		if i < len(p.blocks)-1 {
			cmplxInput, floatInput = cmplxOutput, floatOutput
			cmplxOutput, floatOutput = nil, nil
		}
	}
	return cmplxOutput, floatOutput, nil
}

// ProcessComplexToFloat runs a complex-in, float-out chain over one segment.
// The returned data is only valid until the next call.
func (p *Processor) ProcessComplexToFloat(input *types.SegmentComplex64, metrics map[string]interface{}) (*types.SegmentFloat32, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	if p.blocks[0].inputDataType != DataTypeComplex {
		return nil, fmt.Errorf("invalid input type: got %s expected %s", p.blocks[0].inputDataType, DataTypeComplex)
	}
	if last := p.blocks[len(p.blocks)-1]; last.outputDataType != DataTypeFloat {
		return nil, fmt.Errorf("invalid output type: got %s expected %s", last.outputDataType, DataTypeFloat)
	}

	_, floatOutput, err := p.processData(input.Data, nil, metrics)
	if err != nil {
		return nil, err
	}

	return &types.SegmentFloat32{
		SegmentNumber: input.SegmentNumber,
		Data:          floatOutput,
	}, nil
}
