// Command gateway serves SQL over HTTP against an embedded DuckDB engine
// with optional Iceberg and DuckLake catalogs attached.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
