package main

import "github.com/ValentinKolb/dPrefs/cmd"

func main() {
	cmd.Execute()
}
