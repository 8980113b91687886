package processor

type DataType int

const (
	DataTypeComplex DataType = iota
	DataTypeFloat
)

func (d DataType) String() string {
	switch d {
	case DataTypeComplex:
		return "complex"
	case DataTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// DSPWorker is one stage of a Processor chain.
type DSPWorker struct {
	Name       string
	InputRate  int
	OutputRate int

	inputDataType  DataType
	outputDataType DataType

	ccWorker CCWorker
	cfWorker CFWorker
	ffWorker FFWorker

	fOutputBuffer []float32
	cOutputBuffer []complex64
}

func baseWorker(name string, inputRate, outputRate int) *DSPWorker {
	return &DSPWorker{
		Name:       name,
		InputRate:  inputRate,
		OutputRate: outputRate,
	}
}

func NewDSPWorkerCC(name string, inputRate, outputRate int, worker CCWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeComplex
	ret.outputDataType = DataTypeComplex
	ret.ccWorker = worker
	return ret
}

func NewDSPWorkerCF(name string, inputRate, outputRate int, worker CFWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeComplex
	ret.outputDataType = DataTypeFloat
	ret.cfWorker = worker
	return ret
}

func NewDSPWorkerFF(name string, inputRate, outputRate int, worker FFWorker) *DSPWorker {
	ret := baseWorker(name, inputRate, outputRate)
	ret.inputDataType = DataTypeFloat
	ret.outputDataType = DataTypeFloat
	ret.ffWorker = worker
	return ret
}

// Complex in, complex out
type CCWorker interface {
	WorkBuffer([]complex64, []complex64) int
	PredictOutputSize(int) int
}

// Complex in, float out
type CFWorker interface {
	WorkBuffer([]complex64, []float32) int
	PredictOutputSize(int) int
}

type FFWorker interface {
	WorkBuffer([]float32, []float32) int
	PredictOutputSize(int) int
}
