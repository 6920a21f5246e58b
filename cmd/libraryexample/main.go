package main

import (
	"context"
	"fmt"

	"github.com/eatonphil/resultset"
)

func main() {
	ctx := context.Background()
	mb := resultset.NewMemoryBackend()

	source := `CREATE TABLE users (id INT NOT NULL, name NVARCHAR(40) NULL);
INSERT INTO users VALUES (1, N'Admin'), (2, NULL);
SELECT id, name FROM users;
SELECT 1 AS ColInteger, 'STRING' AS ColString`

	cursor, err := resultset.BeginBatch(ctx, mb.Execute(ctx, source))
	if err != nil {
		panic(err)
	}
	defer cursor.Close()

	for {
		ok, err := cursor.NextResult(ctx)
		if err != nil {
			panic(err)
		}
		if !ok {
			break
		}

		schema, err := cursor.CurrentSchema()
		if err != nil {
			panic(err)
		}

		for _, col := range schema.Columns() {
			fmt.Printf("| %s ", col.Name)
		}
		fmt.Println("|")

		for i := 0; i < 20; i++ {
			fmt.Printf("=")
		}
		fmt.Println()

		for {
			ok, err := cursor.Read(ctx)
			if err != nil {
				panic(err)
			}
			if !ok {
				break
			}

			fmt.Printf("|")
			for i := 0; i < schema.Len(); i++ {
				v, err := cursor.Value(i)
				if err != nil {
					panic(err)
				}

				fmt.Printf(" %s | ", v)
			}

			fmt.Println()
		}
		fmt.Println()
	}
}
