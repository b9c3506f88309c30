package dialog

type State string

const (
	StateIdle State = "idle"

	// waiting for an XLSX document with products
	StateAwaitImport State = "await_import"
	// waiting for a product number to look up
	StateAwaitProductNo State = "await_product_no"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}
