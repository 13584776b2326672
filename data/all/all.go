// Package all registers every database and cache driver:
//
//	import _ "github.com/ncobase/genqueue/data/all"
package all

import (
	_ "github.com/ncobase/genqueue/data/mysql"
	_ "github.com/ncobase/genqueue/data/postgres"
	_ "github.com/ncobase/genqueue/data/redis"
	_ "github.com/ncobase/genqueue/data/sqlite"
)
