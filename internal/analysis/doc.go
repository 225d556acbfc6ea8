// Package analysis inspects recorded runs offline.
package analysis
