package main

import (
	"flag"
	"log"

	"minisql/btree"
	"minisql/storage"
)

func main() {
	path := flag.String("db", "minisql.db", "path to the database file")
	poolSize := flag.Int("pool-size", storage.DefaultPoolSize, "number of buffer pool frames")
	flag.Parse()

	engine, err := storage.Open(*path, *poolSize)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer engine.Close()

	idx := engine.Index(1, btree.Int64KeyManager{})
	for i := int64(0); i < 10; i++ {
		if _, err := idx.Insert(btree.EncodeInt64Key(i), btree.RowId{PageID: int32(i)}); err != nil {
			log.Fatalf("insert %d: %v", i, err)
		}
	}

	it, err := idx.Begin()
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	defer it.Close()
	for !it.End() {
		log.Printf("key=%d value=%+v", btree.DecodeInt64Key(it.Key()), it.Value())
		it.Next()
	}

	engine.LogStats()
}
