package main

import (
	"database/sql"
	"fmt"

	_ "github.com/eatonphil/resultset"
)

func main() {
	db, err := sql.Open("resultset", "sqlexample")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE users (
		name NVARCHAR(50) NOT NULL,
		age INT NOT NULL,
		nickname NVARCHAR(50) SPARSE NULL,
		city VARCHAR(40) SPARSE NULL,
		attributes XML COLUMN_SET FOR ALL_SPARSE_COLUMNS
	);`)
	if err != nil {
		panic(err)
	}

	_, err = db.Exec("INSERT INTO users (name, age, nickname) VALUES (N'Terry', 45, N'T');")
	if err != nil {
		panic(err)
	}

	_, err = db.Exec("INSERT INTO users (name, age, city) VALUES (N'Anette', 57, 'Oslo');")
	if err != nil {
		panic(err)
	}

	rows, err := db.Query("SELECT name, age FROM users; SELECT * FROM users;")
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var name string
	var age int64
	for rows.Next() {
		err := rows.Scan(&name, &age)
		if err != nil {
			panic(err)
		}

		fmt.Printf("Name: %s, Age: %d\n", name, age)
	}

	if !rows.NextResultSet() {
		panic(fmt.Sprintf("expected a second result set: %v", rows.Err()))
	}

	cols, err := rows.ColumnTypes()
	if err != nil {
		panic(err)
	}
	for _, col := range cols {
		fmt.Printf("Column: %s %s\n", col.Name(), col.DatabaseTypeName())
	}

	var attributes sql.NullString
	for rows.Next() {
		err := rows.Scan(&name, &age, &attributes)
		if err != nil {
			panic(err)
		}

		fmt.Printf("Name: %s, Age: %d, Attributes: %s\n", name, age, attributes.String)
	}

	if err = rows.Err(); err != nil {
		panic(err)
	}
}
