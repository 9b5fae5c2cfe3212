package database

import (
	"log"
	"strings"
	"sync"

	"github.com/gocql/gocql"
)

var preparedOnce sync.Once

// InitPreparedStatements pré-prépare les requêtes chaudes du checkout sur
// chaque keyspace : gocql met les statements préparés en cache par nœud, la
// première vraie requête ne paie donc pas l'aller-retour de préparation.
func InitPreparedStatements() {
	preparedOnce.Do(func() {
		warm := func(session *gocql.Session, queries []string) {
			for _, q := range queries {
				// Exécution à vide : prépare et met en cache, le résultat importe peu
				iter := session.Query(q, warmupBind(q)...).Iter()
				_ = iter.Close()
			}
		}

		if usersSession, err := GetUsersSession(); err == nil {
			warm(usersSession, []string{
				"SELECT user_id, password, name, role FROM users_by_email WHERE email = ?",
				"SELECT email, name, role FROM users WHERE user_id = ?",
			})
		} else {
			log.Printf("⚠️ Warmup users impossible: %v", err)
		}

		if productsSession, err := GetProductsSession(); err == nil {
			warm(productsSession, []string{
				"SELECT stock FROM products WHERE product_id = ?",
			})
		} else {
			log.Printf("⚠️ Warmup products impossible: %v", err)
		}

		if ordersSession, err := GetOrdersSession(); err == nil {
			warm(ordersSession, []string{
				"SELECT order_id FROM orders_by_payment WHERE payment_intent_id = ?",
			})
		} else {
			log.Printf("⚠️ Warmup orders impossible: %v", err)
		}

		log.Println("✅ Prepared statements initialisés")
	})
}

// warmupBind fournit des valeurs factices du bon type pour chaque placeholder.
func warmupBind(query string) []interface{} {
	switch {
	case strings.Contains(query, "user_id = ?"), strings.Contains(query, "product_id = ?"):
		return []interface{}{gocql.UUID{}}
	default:
		return []interface{}{""}
	}
}
