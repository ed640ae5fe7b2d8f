package fbreak_test

import (
	"context"
	"fmt"

	"github.com/johnranson/formatbreaker/pkg/fbreak"
)

func ExampleParser_Parse() {
	frame := fbreak.Block([]fbreak.Parser{
		fbreak.Const([]byte("SF")).Label("magic"),
		fbreak.TranslateExpr(fbreak.Byte, "int(value[0])").Label("count"),
		fbreak.Bytes(2).Label("reading").Times("count"),
	})

	result, err := frame.Parse(context.Background(),
		[]byte{'S', 'F', 0x02, 0x01, 0x02, 0x03, 0x04})
	if err != nil {
		fmt.Println(err)
		return
	}
	for el := result.Front(); el != nil; el = el.Next() {
		fmt.Printf("%s: %v\n", el.Key, el.Value)
	}
	// Output:
	// magic: [83 70]
	// count: 2
	// reading: [1 2]
	// reading 1: [3 4]
}
