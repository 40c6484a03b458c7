// Command vinobench benchmarks wine label scanning backends. It scans an
// image corpus against an environment, stores each run, and compares two
// runs image by image into a categorized report.
package main
