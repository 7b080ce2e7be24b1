package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/notargets/gopnp/output"
	"github.com/notargets/gopnp/pnp"
)

var (
	csvFile string
)

func main() {
	csvFilePtr := flag.String("csvFile", csvFile, "history.csv written by a gopnp run")
	flag.Parse()
	csvFile = *csvFilePtr
	if len(csvFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", csvFile)
	recs := readCSV(csvFile)
	l2, h1 := output.ConvergenceOrders(recs)
	fmt.Printf("level, cells, newton, L2 error, H1 error, L2 order, H1 order\n")
	for i, rec := range recs {
		if i == 0 {
			fmt.Printf("%d, %d, %d, %v, %v, -, -\n",
				rec.Level, rec.Cells, rec.NewtonIterations, rec.L2Error, rec.H1Error)
			continue
		}
		fmt.Printf("%d, %d, %d, %v, %v, %5.2f, %5.2f\n",
			rec.Level, rec.Cells, rec.NewtonIterations, rec.L2Error, rec.H1Error, l2[i-1], h1[i-1])
	}
}

func readCSV(csvFile string) (recs []pnp.LevelRecord) {
	var (
		err error
		f   *os.File
	)
	if f, err = os.Open(csvFile); err != nil {
		panic(err)
	}
	defer f.Close()
	if recs, err = output.ReadHistory(bufio.NewReader(f)); err != nil {
		panic(err)
	}
	return
}
