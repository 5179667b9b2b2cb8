// Copyright 2009 Peter H. Froehlich. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

// VFSName reports the name of the VFS backing dbName ("main" unless
// attaching additional databases), via SQLITE_FCNTL_VFSNAME.
func (c *Connection) VFSName(dbName string) (name string, err error) {
	err = c.withGate(func() error {
		n, ferr := c.db.VFSName(dbName)
		if ferr != nil {
			return fromEngine(ferr)
		}
		name = n
		return nil
	})
	return
}

// DataVersion reports the database's data-version counter via
// SQLITE_FCNTL_DATA_VERSION, which increments whenever the database file
// changes (including from another process), letting a cache invalidate
// itself without polling the schema.
func (c *Connection) DataVersion(dbName string) (version uint32, err error) {
	err = c.withGate(func() error {
		v, ferr := c.db.DataVersion(dbName)
		if ferr != nil {
			return fromEngine(ferr)
		}
		version = v
		return nil
	})
	return
}
