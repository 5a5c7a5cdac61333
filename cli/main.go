// Command ytarchive keeps a plain-text transcript archive of a YouTube
// channel up to date.
package main

func main() {
	Execute()
}
