package client

// InventoryReader turns a station response into an inventory.
type InventoryReader interface {
	ReadInventory(data []byte) (any, error)
}

// WaveformReader turns a dataselect response into waveforms.
type WaveformReader interface {
	ReadWaveforms(data []byte) (any, error)
}

// ResponseAttacher attaches the instrument responses of inventory to
// waveforms.
type ResponseAttacher interface {
	AttachResponse(waveforms, inventory any) (any, error)
}

// InventoryReaderFunc adapts a function to InventoryReader.
type InventoryReaderFunc func(data []byte) (any, error)

func (f InventoryReaderFunc) ReadInventory(data []byte) (any, error) { return f(data) }

// WaveformReaderFunc adapts a function to WaveformReader.
type WaveformReaderFunc func(data []byte) (any, error)

func (f WaveformReaderFunc) ReadWaveforms(data []byte) (any, error) { return f(data) }

// ResponseAttacherFunc adapts a function to ResponseAttacher.
type ResponseAttacherFunc func(waveforms, inventory any) (any, error)

func (f ResponseAttacherFunc) AttachResponse(waveforms, inventory any) (any, error) {
	return f(waveforms, inventory)
}

// WithResponse pairs waveforms with the inventory holding their responses.
// It is what the default ResponseAttacher returns.
type WithResponse struct {
	Waveforms any
	Inventory any
}

type rawReader struct{}

func (rawReader) ReadInventory(data []byte) (any, error) { return data, nil }
func (rawReader) ReadWaveforms(data []byte) (any, error) { return data, nil }

type pairAttacher struct{}

func (pairAttacher) AttachResponse(waveforms, inventory any) (any, error) {
	return WithResponse{Waveforms: waveforms, Inventory: inventory}, nil
}
