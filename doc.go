package tinytablet

/*
TinyTablet is a client library and in-process test cluster for a distributed, columnar,
tablet-partitioned table store, intended for teaching and experimentation. It is not
suitable for production use.

Tables have typed schemas with a composite primary key prefix, and are range-partitioned
into tablets by encoded primary key. The client talks to a master for table metadata and
DDL, and to tablet services for writes and scans.

The module is organized into the following packages:

* `client`: the client library. Schemas, tables, insert sessions with buffered flushing,
  range scanners with column predicates, and the builder used to connect to a master.
* `codec`: order-preserving key encoding and the self-describing row encoding used on
  the wire and in storage.
* `inmem`: an in-process cluster implementing the master and tablet services against
  in-memory storage, plus a registry that stands in for the network. Write hooks allow
  fault injection in tests.
* `sample`: an end-to-end walkthrough of the client API (create, alter, insert, scan,
  drop), and the `tablet-sample` binary that runs it.
*/
