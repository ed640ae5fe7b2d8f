// Package fbreak is a declarative combinator library for breaking structured
// binary data into a labeled, insertion-ordered result mapping.
//
// # Overview
//
// Small field parsers (fixed bytes, single bits, bit words) compose into
// ordered containers that describe a binary layout. The engine walks the
// input once, tracks a byte- or bit-addressed cursor, resolves pinned
// addresses, and produces a nested result annotated with spacer entries for
// skipped ranges. It supports:
//
//   - Transactional parsing of optional regions (failed matches roll the
//     cursor back and leave no entries behind)
//   - Dynamic lengths and repeat counts sourced from already parsed fields
//   - Byte- and bit-addressed scopes, nested to arbitrary depth
//   - Deterministic disambiguation of repeated labels
//
// # Quick Start
//
// Parsers are immutable templates; the builder methods return copies:
//
//	header := fbreak.Block([]fbreak.Parser{
//		fbreak.Const([]byte("PS")).Label("magic"),
//		fbreak.Byte.Label("count"),
//		fbreak.Bytes(4).Label("record").Times("count"),
//	})
//	result, err := header.Parse(context.Background(), data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for el := result.Front(); el != nil; el = el.Next() {
//		fmt.Println(el.Key, el.Value)
//	}
//
// Construction problems (negative addresses, bad lengths) panic with a
// *ConstructionError at build time; malformed data surfaces as an error
// wrapping ErrParse from Parse.
package fbreak
