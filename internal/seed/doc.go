// Package seed creates the initial principals a fresh deployment needs.
package seed
