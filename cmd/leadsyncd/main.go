// Command leadsyncd runs a leadsync node hosting in-memory shard replicas.
package main

func main() {
	Execute()
}
