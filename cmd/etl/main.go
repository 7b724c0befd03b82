// Command etl rebuilds the reporting store from the two district exports.
//
//	etl                      full reload with settings from the environment / .env
//	etl --db data/ief.db     override the store location
//	etl summary              print the figures of the current store
package main

func main() {
	Execute()
}
