package pool_test

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/mcpbridge/pkg/pool"
)

// Example shows a typed pool with a reset hook.
func Example() {
	builders := pool.New(
		func() *strings.Builder { return &strings.Builder{} },
		func(b *strings.Builder) { b.Reset() },
	)

	b := builders.Get()
	b.WriteString("api.weather")
	fmt.Println(b.String())
	builders.Put(b)

	_, inUse, _ := builders.Stats()
	fmt.Println("in use:", inUse)

	// Output:
	// api.weather
	// in use: 0
}

// ExampleGetBuffer borrows a body buffer and returns it when done.
func ExampleGetBuffer() {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.WriteString(`{"city":"London"}`)
	fmt.Println(buf.Len())

	// Output:
	// 17
}
